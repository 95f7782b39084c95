// Package realtime provides the client for the conversational AI provider's
// realtime API: one persistent bidirectional WebSocket per call carrying
// event-typed JSON with interleaved base64 audio.
//
// Connect and configure a session:
//
//	client := realtime.NewClient(apiKey)
//	sess, err := client.Connect(ctx, &realtime.ConnectConfig{
//	    Model: "gpt-4o-realtime-preview",
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	err = sess.UpdateSession(&realtime.SessionConfig{
//	    Voice:        "alloy",
//	    Instructions: "You are a helpful phone agent.",
//	    TurnDetection: &realtime.TurnDetection{Type: realtime.VADServerVAD},
//	})
//
// Stream audio in and consume server events:
//
//	err = sess.AppendAudio(pcm24k)
//
//	for event, err := range sess.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    switch event.Type {
//	    case realtime.EventResponseAudioDelta:
//	        play(event.Audio)
//	    case realtime.EventResponseDone:
//	        // turn complete
//	    }
//	}
//
// Sessions distinguish graceful close (flush, close frame, then teardown)
// from abrupt close (immediate teardown on error). Configuration does not
// survive a reconnect; callers re-send session.update on a fresh session.
package realtime
