// ABOUTME: Live coaching session package
// ABOUTME: Wires capture, PCM encoding, the live client and playback together
// Package coach runs a live sales coaching session.
//
// A Session captures microphone blocks, encodes them to 16 kHz PCM,
// streams them to the live speech service, and plays spoken replies
// back-to-back while surfacing transcripts and coaching suggestions.
//
// Example:
//
//	session, err := coach.NewSession(coach.Config{
//		Endpoint: endpoint,
//		APIKey:   key,
//		Capture:  capture.NewMalgo(capture.MalgoConfig{}),
//		Output:   output.NewOto(logger),
//		OnSuggestion: func(s coach.Suggestion) {
//			fmt.Println(s.Text)
//		},
//	})
//	err = session.Start(ctx)
//	defer session.Stop()
package coach
