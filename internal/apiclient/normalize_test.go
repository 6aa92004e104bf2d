package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(status int, body string) RawResponse {
	return RawResponse{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     http.Header{},
		Body:       []byte(body),
	}
}

func TestNormalize_BusinessCodeFailsUnder200(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
		code int
	}{
		{"numeric code with error", `{"code":4001,"message":"bad","error":"document unreadable","request_id":"r1"}`, "document unreadable", 4001},
		{"message only", `{"code":5003,"message":"quota used up"}`, "quota used up", 5003},
		{"no text at all", `{"code":17}`, "Business Error: 17", 17},
		{"string code", `{"code":"4002","detail":"blurry"}`, "blurry", 4002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(raw(http.StatusOK, tt.body), nil)

			require.False(t, res.OK())
			assert.Equal(t, http.StatusOK, res.Status)
			assert.Equal(t, tt.msg, res.Error)
			assert.Equal(t, KindBusinessError, res.Kind())
			require.NotNil(t, res.Meta.BusinessCode)
			assert.Equal(t, tt.code, *res.Meta.BusinessCode)
		})
	}
}

func TestNormalize_SuccessCodes(t *testing.T) {
	for _, body := range []string{
		`{"code":0,"message":"ok","data":{"x":1}}`,
		`{"code":200,"message":"ok","data":{"x":1}}`,
		`{"message":"ok","data":{"x":1}}`,
	} {
		res := Normalize(raw(http.StatusOK, body), nil)
		require.True(t, res.OK(), body)
		assert.JSONEq(t, `{"x":1}`, string(res.Data))
		assert.Empty(t, res.Error)
	}
}

func TestNormalize_UnauthorizedHookFiresOnce(t *testing.T) {
	bodies := []string{"", `{"code":401,"message":"token expired"}`, "<html>nope</html>"}
	for _, body := range bodies {
		calls := 0
		res := Normalize(raw(http.StatusUnauthorized, body), func() { calls++ })

		assert.Equal(t, 1, calls)
		assert.Equal(t, http.StatusUnauthorized, res.Status)
		assert.Equal(t, "Unauthorized", res.Error)
		assert.Equal(t, KindUnauthorized, res.Kind())
	}
}

func TestNormalize_HookNotCalledForOtherStatuses(t *testing.T) {
	calls := 0
	hook := func() { calls++ }
	Normalize(raw(http.StatusForbidden, `{"error":"nope"}`), hook)
	Normalize(raw(http.StatusOK, `{"code":401}`), hook)
	Normalize(raw(http.StatusInternalServerError, ""), hook)
	assert.Zero(t, calls)
}

func TestNormalize_HTTPErrorMessagePriority(t *testing.T) {
	tests := []struct {
		name string
		resp RawResponse
		want string
	}{
		{"error detail wins", raw(http.StatusBadRequest, `{"error":"picture is required","message":"bad request"}`), "picture is required"},
		{"structured error", raw(http.StatusBadRequest, `{"error":{"code":"E1","message":"invalid type"}}`), "invalid type"},
		{"detail field", raw(http.StatusUnprocessableEntity, `{"detail":"country not supported"}`), "country not supported"},
		{"message next", raw(http.StatusNotFound, `{"message":"no such session"}`), "no such session"},
		{"status text next", raw(http.StatusBadGateway, "upstream down"), "Bad Gateway"},
		{"synthesized last", RawResponse{StatusCode: 599, Header: http.Header{}}, "HTTP Error: 599"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.resp, nil)
			require.False(t, res.OK())
			assert.Equal(t, tt.want, res.Error)
			assert.Equal(t, tt.resp.StatusCode, res.Status)
			assert.Equal(t, KindHTTPError, res.Kind())
		})
	}
}

func TestNormalize_LegacyFlatShape(t *testing.T) {
	body := `{"code":0,"parsing_results":{"name":"Somchai"}}`
	res := Normalize(raw(http.StatusOK, body), nil)

	require.True(t, res.OK())
	assert.JSONEq(t, body, string(res.Data))
}

func TestNormalize_BareArrayIsPayload(t *testing.T) {
	res := Normalize(raw(http.StatusOK, `[{"id":"k1"}]`), nil)
	require.True(t, res.OK())
	assert.JSONEq(t, `[{"id":"k1"}]`, string(res.Data))
}

func TestNormalize_NonJSONSuccess(t *testing.T) {
	res := Normalize(raw(http.StatusNoContent, ""), nil)
	require.True(t, res.OK())
	assert.Nil(t, res.Data)
	assert.Equal(t, http.StatusNoContent, res.Status)
}

func TestNormalize_Meta(t *testing.T) {
	r := raw(http.StatusOK, `{"code":0,"timestamp":1712345678,"request_id":"req-body","data":null}`)
	r.Header.Set("X-Request-ID", "req-header")
	res := Normalize(r, nil)

	require.True(t, res.OK())
	assert.Equal(t, "req-body", res.Meta.RequestID)
	assert.Equal(t, int64(1712345678), res.Meta.Timestamp)

	r = raw(http.StatusInternalServerError, "")
	r.Header.Set("X-Request-ID", "req-header")
	res = Normalize(r, nil)
	assert.Equal(t, "req-header", res.Meta.RequestID)
}

func TestResult_ErrCarriesTrace(t *testing.T) {
	code := 4001
	res := Failure("document unreadable", http.StatusOK, Meta{RequestID: "trace-1", BusinessCode: &code})
	err := res.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document unreadable")

	assert.NoError(t, Success(nil, 200, Meta{}).Err())
}

func TestResult_Decode(t *testing.T) {
	var v struct {
		X int `json:"x"`
	}
	require.NoError(t, Success([]byte(`{"x":3}`), 200, Meta{}).Decode(&v))
	assert.Equal(t, 3, v.X)

	assert.Error(t, Failure("boom", 500, Meta{}).Decode(&v))
	assert.Error(t, Success([]byte(`{"x":"three"}`), 200, Meta{}).Decode(&v))
}

func TestResult_Kind(t *testing.T) {
	assert.Equal(t, KindNetworkError, Failure("dial", 0, Meta{}).Kind())
	assert.Equal(t, KindTimeout, Failure("Request Timeout", 408, Meta{}).Kind())
	assert.Equal(t, KindHTTPError, Failure("x", 503, Meta{}).Kind())
	assert.Equal(t, KindSuccess, Success(nil, 201, Meta{}).Kind())
}
