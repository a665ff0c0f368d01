package stream

import (
	"bufio"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteSSE writes ev as one server-sent event and flushes it.
func WriteSSE(w *bufio.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, data); err != nil {
		return err
	}
	return w.Flush()
}

// Encode returns the JSON form used by the websocket adapter.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
