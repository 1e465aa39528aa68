package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody is set on failures. Fields holds per-field validation messages
// keyed by JSON path, e.g. "questions[0].correct_answer".
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata carries the request id and the server clock at reply time.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// NewPagination derives the page count for a list reply.
func NewPagination(page, perPage, total int) *Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return &Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

// ─── Success ────────────────────────────────────────────────────────────────

func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, Response{Data: data}, false)
}

func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	write(c, statusCode, Response{Data: data, Pagination: pagination}, false)
}

// ─── Failure ────────────────────────────────────────────────────────────────

// Fail replies with code and its catalogue message.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, failure(code, nil), false)
}

// FailWithFields is Fail with per-field validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	write(c, statusCode, failure(code, fields), false)
}

// FailCode replies with the status the catalogue pairs with code.
func FailCode(c *gin.Context, code ErrCode) {
	Fail(c, StatusOf(code), code)
}

// AbortFail is Fail for middleware: later handlers do not run.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, failure(code, nil), true)
}

func failure(code ErrCode, fields map[string]string) Response {
	return Response{Error: &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}}
}

func write(c *gin.Context, statusCode int, body Response, abort bool) {
	body.Metadata = metadata(c)
	if abort {
		c.AbortWithStatusJSON(statusCode, body)
		return
	}
	c.JSON(statusCode, body)
}

func metadata(c *gin.Context) Metadata {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.New().String()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
