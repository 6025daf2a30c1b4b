package everytriv

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// isJSONContent reports whether the media type declares a JSON body.
func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// readBody drains and closes the response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// normalizeSuccess converts a 2xx body into a Response. Bodies that carry the
// server envelope ({success, data, timestamp}) are unwrapped; anything else is
// the data itself.
func normalizeSuccess(statusCode int, header http.Header, body []byte, req *http.Request) (*Response, error) {
	out := &Response{
		Success:    true,
		StatusCode: statusCode,
		Header:     header,
	}

	if len(body) == 0 {
		out.Data = json.RawMessage("null")
		return out, nil
	}

	if !isJSONContent(header.Get("Content-Type")) {
		text, err := json.Marshal(string(body))
		if err != nil {
			return nil, malformedError(err, req)
		}
		out.Data = text
		return out, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, malformedError(nil, req)
	}

	root := gjson.ParseBytes(body)
	success := root.Get("success")
	data := root.Get("data")
	if root.IsObject() && success.Exists() && data.Exists() {
		out.Success = success.Bool()
		out.Data = json.RawMessage(data.Raw)
		out.Timestamp = root.Get("timestamp").String()
		return out, nil
	}

	out.Data = json.RawMessage(body)
	return out, nil
}

// normalizeError converts a non-2xx body into an *APIError.
func normalizeError(statusCode int, body []byte, req *http.Request) *APIError {
	message, details := parseErrorBody(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	if message == "" {
		message = "request failed"
	}
	return newStatusError(statusCode, message, details, req)
}

// parseErrorBody extracts {message, details} from JSON or text bodies. Error
// bodies are sniffed because servers often mislabel them.
func parseErrorBody(body []byte) (string, any) {
	if len(body) == 0 {
		return "", nil
	}

	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		if root.IsObject() {
			details := json.RawMessage(body)
			if msg := root.Get("message"); msg.Type == gjson.String && msg.String() != "" {
				return msg.String(), details
			}
			errField := root.Get("error")
			switch {
			case errField.Type == gjson.String:
				return errField.String(), details
			case errField.IsObject():
				return errField.Get("message").String(), details
			}
			return "", details
		}
	}

	text := strings.TrimSpace(string(body))
	return text, text
}

func malformedError(cause error, req *http.Request) *APIError {
	apiErr := &APIError{
		Kind:      KindMalformed,
		Message:   "response body does not match its content type",
		Timestamp: time.Now(),
		Cause:     cause,
	}
	stampRequest(apiErr, req)
	return apiErr
}
