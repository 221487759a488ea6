// kikiscroll-replay connects to a host as a scripted visitor: it presses
// start, scrolls the whole page and prints every command the host sends
// back. With -listen the audio commands are played on the local sound card.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer"
	"github.com/KikinaStudio/kikiscroll/pkg/mixer/beepout"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/protocol"
	"github.com/KikinaStudio/kikiscroll/pkg/replay"
	"github.com/KikinaStudio/kikiscroll/pkg/scroll"
)

var (
	url      = flag.String("url", "ws://localhost:8080/ws/visitor", "Visitor WebSocket endpoint")
	step     = flag.Float64("step", 0.05, "Viewport heights per tick")
	interval = flag.Duration("interval", 50*time.Millisecond, "Pause between ticks")
	back     = flag.Bool("back", false, "Scroll back to the top after the pass")
	grant    = flag.Bool("grant", false, "Ask for the camera in the webcam section, grant it and report a smile")
	listen   = flag.String("listen", "", "Play the audio commands from this tracks directory")
	linger   = flag.Duration("linger", 2*time.Second, "Wait for trailing fades before leaving")
	quiet    = flag.Bool("quiet", false, "Hide visual and state messages")
)

func main() {
	flag.Parse()
	log.Init("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "kikiscroll-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	c, err := replay.Dial(ctx, *url, log.L())
	if err != nil {
		return err
	}
	defer c.Close()

	// The first message describes the narrative.
	var hello protocol.NarrativeData
	select {
	case msg, ok := <-c.Messages():
		if !ok || msg.Type != protocol.TypeNarrative {
			return fmt.Errorf("expected a narrative message first")
		}
		if err := msg.ParseData(&hello); err != nil {
			return err
		}
		fmt.Println(replay.Describe(msg))
	case <-ctx.Done():
		return ctx.Err()
	}

	var backend mixer.Backend
	if *listen != "" {
		out, err := beepout.Open(*listen, hello.Tracks)
		if err != nil {
			return err
		}
		defer out.Close()
		backend = out
	}

	go report(c, backend)

	if err := c.Start(); err != nil {
		return err
	}
	page := scroll.NewPage(len(hello.Sections), scroll.DefaultPin, scroll.DefaultGap, c)
	page.Begin()

	passes := []replay.Pass{{To: page.Max(), Step: *step, Interval: *interval}}
	if *back {
		passes = append(passes, replay.Pass{From: page.Max(), To: 0, Step: *step, Interval: *interval})
	}
	for _, p := range passes {
		if err := p.Run(ctx, page); err != nil {
			return err
		}
		if err := c.Err(); err != nil {
			return err
		}
	}

	select {
	case <-time.After(*linger):
	case <-ctx.Done():
	case <-c.Done():
	}
	return nil
}

// report prints host messages. With -grant it also asks for the camera
// once the webcam section is reached and answers the request.
func report(c *replay.Client, backend mixer.Backend) {
	smile := true
	requested := false
	for msg := range c.Messages() {
		switch msg.Type {
		case protocol.TypeVisual, protocol.TypeState:
			var s protocol.StateData
			if *grant && !requested && msg.Type == protocol.TypeState && msg.ParseData(&s) == nil &&
				s.Feature == narrative.FeatureWebcam && !s.Camera {
				requested = true
				c.Camera(true)
			}
			if *quiet {
				continue
			}
		case protocol.TypeCameraRequest:
			if *grant {
				c.Answer(true, "")
				c.Expression(&smile)
			} else {
				c.Answer(false, "replay has no camera")
			}
		}

		if backend != nil {
			if err := replay.Mirror(backend, msg); err != nil {
				log.Warn("mirror failed", "type", msg.Type, "error", err)
			}
		}
		fmt.Printf("%s  %s\n", time.Now().Format("15:04:05.000"), replay.Describe(msg))
	}
}
