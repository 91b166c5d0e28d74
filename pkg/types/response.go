package types

// SuccessEnvelope wraps every 2xx JSON payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the client-visible part of a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON payload.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func Success(data any) SuccessEnvelope {
	return SuccessEnvelope{Data: data}
}

func Failure(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}}
}
