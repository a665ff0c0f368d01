package controller

import (
	"bufio"
	"context"

	"ai-plugin-engine/pkg/stream"

	"github.com/gofiber/fiber/v2"
)

// streamSSE answers with a server-sent event stream fed by run. The run
// outlives the handler, so it gets its own context, cancelled when the
// client stops reading.
func streamSSE(c *fiber.Ctx, run func(ctx context.Context, sink stream.Sink) error) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.UserContext()))
	sink := stream.NewChannelSink(8)
	stream.Run(ctx, sink, run)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range sink.Events() {
			if err := stream.WriteSSE(w, ev); err != nil {
				cancel()
				for range sink.Events() {
				}
				return
			}
		}
	})
	return nil
}
