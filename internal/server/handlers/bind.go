package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/service/catalog"
	"github.com/mamadbah2/vaccine-orders/internal/storage"
)

// imageField is the multipart part carrying an uploaded picture.
const imageField = "image"

// formSchema tells the multipart decoder which form values are not plain strings.
type formSchema struct {
	ints  []string
	bools []string
	lists []string
}

func (s formSchema) kind(field string) string {
	for _, f := range s.ints {
		if f == field {
			return "int"
		}
	}
	for _, f := range s.bools {
		if f == field {
			return "bool"
		}
	}
	for _, f := range s.lists {
		if f == field {
			return "list"
		}
	}
	return "string"
}

var (
	productForm = formSchema{
		ints:  []string{"minimum_order_qty", "lead_time_days", "available_stock"},
		bools: []string{"cold_chain_required"},
		lists: []string{"tags"},
	}
	batchForm = formSchema{
		ints: []string{"product", "quantity", "quantity_reserved"},
	}
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

// bindJSON decodes the request body over dst. An empty body leaves dst untouched.
func bindJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.Invalid(typeErr.Field, fmt.Sprintf("Expected %s but got %s.", typeErr.Type, typeErr.Value))
	}
	return apperror.BadRequest("JSON parse error - " + err.Error())
}

// bindEntity decodes a JSON or multipart body over dst and returns the optional image.
// The caller must close the returned upload body when it is not nil.
func bindEntity(c *gin.Context, dst any, schema formSchema) (*catalog.Upload, io.Closer, error) {
	if !isMultipart(c.Request) {
		return nil, nil, bindJSON(c.Request, dst)
	}

	if err := c.Request.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		return nil, nil, apperror.BadRequest("Multipart form parse error - " + err.Error())
	}
	form := c.Request.MultipartForm

	values, err := formValues(form.Value, schema)
	if err != nil {
		return nil, nil, err
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, nil, fmt.Errorf("encode form: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, nil, apperror.BadRequest("Form parse error - " + err.Error())
	}

	files := form.File[imageField]
	if len(files) == 0 {
		return nil, nil, nil
	}
	return openUpload(files[0])
}

func openUpload(fh *multipart.FileHeader) (*catalog.Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	return &catalog.Upload{Filename: fh.Filename, Body: f}, f, nil
}

func formValues(form map[string][]string, schema formSchema) (map[string]any, error) {
	out := make(map[string]any, len(form))
	v := &apperror.ValidationError{}
	for key, vals := range form {
		if len(vals) == 0 {
			continue
		}
		first := strings.TrimSpace(vals[0])
		switch schema.kind(key) {
		case "int":
			n, err := strconv.Atoi(first)
			if err != nil {
				v.Add(key, "A valid integer is required.")
				continue
			}
			out[key] = n
		case "bool":
			b, err := strconv.ParseBool(first)
			if err != nil {
				v.Add(key, "Must be a valid boolean.")
				continue
			}
			out[key] = b
		case "list":
			out[key] = formList(vals)
		default:
			out[key] = vals[0]
		}
	}
	return out, v.OrNil()
}

// formList accepts a JSON array, a comma separated value or repeated fields.
func formList(vals []string) []string {
	if len(vals) == 1 {
		s := strings.TrimSpace(vals[0])
		var arr []string
		if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &arr) == nil {
			return arr
		}
		vals = strings.Split(s, ",")
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// queryID reads an optional numeric filter such as ?product=.
func queryID(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.Invalid(key, "A valid integer is required.")
	}
	return id, nil
}
