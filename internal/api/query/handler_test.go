package query

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	corequery "creator-coach/internal/core/query"
	"creator-coach/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	got corequery.Request
	err error
}

func (s *stubRunner) Run(_ context.Context, req corequery.Request) (corequery.Response, error) {
	s.got = req
	return corequery.Response{Answer: "ok"}, s.err
}

func do(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/query", strings.NewReader(body)))
	require.NoError(t, err)
	return resp.StatusCode
}

func TestHandleQuery(t *testing.T) {
	r := &stubRunner{}
	app := fiber.New()
	RegisterRoutes(app, NewHandler(r))

	assert.Equal(t, fiber.StatusOK, do(t, app, `{"question":"  how? ","title":"Guide","exclude_ids":["a"]}`))
	assert.Equal(t, "how?", r.got.Question)
	assert.Equal(t, "Guide", r.got.Title)
	assert.Equal(t, []string{"a"}, r.got.ExcludeIDs)

	assert.Equal(t, fiber.StatusBadRequest, do(t, app, `{"question":" "}`))
	assert.Equal(t, fiber.StatusBadRequest, do(t, app, `not json`))
}

func TestHandleQuery_CompletionFailure(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, NewHandler(&stubRunner{err: status.New(status.QueryCompletionFailed, errors.New("llm down"))}))

	assert.Equal(t, fiber.StatusBadGateway, do(t, app, `{"question":"q"}`))
}
