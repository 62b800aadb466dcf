package app

import (
	"bytes"
	"encoding/json"
)

// Result is the uniform envelope every outer surface reports an
// operation's outcome in. A successful result always carries data, so an
// empty listing encodes as "data": [].
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
}

type successBody[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ResultOf[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{Error: err.Error()}
	}
	return Result[T]{Success: true, Data: data}
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var err error
	if r.Success {
		err = enc.Encode(successBody[T]{Success: true, Data: r.Data})
	} else {
		err = enc.Encode(failureBody{Error: r.Error})
	}
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
