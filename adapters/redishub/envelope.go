package redishub

import (
	"encoding/json"
	"errors"

	"github.com/goliatone/go-authflow"
)

// wireError is the JSON form of an error carried in hub data.
type wireError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type envelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

func encode(origin, channel string, p authflow.HubPayload) ([]byte, error) {
	env := envelope{
		Origin:  origin,
		Channel: channel,
		Event:   p.Event,
		Message: p.Message,
	}

	switch d := p.Data.(type) {
	case nil:
	case error:
		env.Error = toWire(d)
	default:
		raw, err := json.Marshal(wireData(d))
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func decode(b []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, err
	}
	if env.Origin == "" || env.Event == "" {
		return env, errors.New("redishub: incomplete envelope")
	}
	return env, nil
}

// payload rebuilds the hub payload. Errors come back as
// *authflow.ProviderError, everything else as generic JSON values.
func (e envelope) payload() authflow.HubPayload {
	p := authflow.HubPayload{Event: e.Event, Message: e.Message}
	switch {
	case e.Error != nil:
		p.Data = authflow.NewProviderError(e.Error.Name, e.Error.Message)
	case len(e.Data) > 0:
		var data any
		if err := json.Unmarshal(e.Data, &data); err == nil {
			p.Data = data
		}
	}
	return p
}

func toWire(err error) *wireError {
	return &wireError{
		Name:    authflow.ErrorName(err),
		Message: authflow.ErrorMessage(err),
	}
}

// wireData replaces error values nested one map level deep, the shape
// handlers use for {"error": err} payloads.
func wireData(data any) any {
	switch d := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(d))
		for k, v := range d {
			if err, ok := v.(error); ok {
				out[k] = toWire(err)
				continue
			}
			out[k] = v
		}
		return out
	}
	return data
}
