package echoapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/services/blob"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// idParam parses a path parameter holding a record id. Malformed ids are not found.
func idParam(ctx echo.Context, name ...string) (int64, error) {
	param := "id"
	if len(name) > 0 {
		param = name[0]
	}
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// dateQuery parses an optional date query parameter.
func dateQuery(ctx echo.Context, name string) (core.Date, error) {
	var d core.Date
	if err := d.UnmarshalParam(ctx.QueryParam(name)); err != nil {
		return core.Date{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date, expected YYYY-MM-DD"})
	}
	return d, nil
}

// intQuery parses an optional integer query parameter, 0 when absent.
func intQuery(ctx echo.Context, name string) (int64, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return n, nil
}

func bindPage(ctx echo.Context) core.Page {
	var page core.Page
	if n, err := intQuery(ctx, "limit"); err == nil {
		page.Limit = int(n)
	}
	if n, err := intQuery(ctx, "offset"); err == nil {
		page.Offset = int(n)
	}
	page.Clean()
	return page
}

// saveUpload keeps the file sent in the multipart field and returns its URL, or "" if no file was sent.
func saveUpload(ctx echo.Context, blobs core.BlobStore, field string) (string, error) {
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return "", nil
	}
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", errors.Wrap(err, "reading upload")
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer func(f io.Closer) { _ = f.Close() }(f)

	url, err := blobs.Save(ctx.Request().Context(), fh.Filename, f)
	if err != nil {
		if errors.Cause(err) == blob.ErrTooLarge {
			return "", core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return "", errors.Wrap(err, "saving upload")
	}
	return url, nil
}

type SuccessResponse struct {
	Success string `json:"success"`
}
