package retry

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

type condition uint8

const (
	on5xx condition = 1 << iota
	onGatewayError
	onConnectFailure
	onRetriable4xx
)

// On decides which responses and transport errors are retried. Conditions follow envoy's retry_on names.
type On struct {
	conditions  condition
	statusCodes []int
}

// NewDefaultRetryOn retries gateway errors, connection failures and 409 Conflict.
func NewDefaultRetryOn() *On {
	return &On{
		conditions:  onGatewayError | onConnectFailure | onRetriable4xx,
		statusCodes: []int{},
	}
}

// NewRetryOnFromString parses a comma separated list such as "5xx,connect-failure,429".
func NewRetryOnFromString(s string) (*On, error) {
	o := &On{
		statusCodes: []int{},
	}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		switch field {
		case "5xx":
			o.conditions |= on5xx
		case "gateway-error":
			o.conditions |= onGatewayError
		case "connect-failure":
			o.conditions |= onConnectFailure
		case "retriable-4xx":
			o.conditions |= onRetriable4xx
		default:
			statusCode, err := strconv.Atoi(field)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, xerrors.Errorf("invalid retryOn: %s", field)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

func (o *On) has(c condition) bool {
	return o.conditions&c != 0
}

// https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case o.has(on5xx) && code >= 500 && code < 600:
		return true
	case o.has(onGatewayError) && code >= 502 && code < 505:
		return true
	case o.has(onRetriable4xx) && code == http.StatusConflict:
		return true
	}

	return slices.Contains(o.statusCodes, code)
}

// CheckError reports whether a transport error is worth another attempt. Only temporary errors and
// connections closed before a response qualify.
func (o *On) CheckError(err error) bool {
	if !o.has(onConnectFailure) && !o.has(on5xx) {
		return false
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	if errors.As(err, &terr) && terr.Temporary() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
