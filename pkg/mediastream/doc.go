// Package mediastream terminates the telephony provider's media-streaming
// WebSocket connections and translates its JSON envelope protocol into typed
// events and audio frames.
//
// One inbound connection carries one call. The provider frames everything as
// single-event JSON messages discriminated by an "event" field:
//
//	{"event":"start","streamSid":...,"callSid":...,"customParameters":{...}}
//	{"event":"media","streamSid":...,"media":{"payload":"<base64 μ-law>"}}
//	{"event":"stop","streamSid":...}
//	{"event":"mark","streamSid":...,"mark":{"name":"<label>"}}
//
// Outbound messages are media (base64 μ-law), mark (playback checkpoints),
// and clear (discard provider-side buffered audio, used for barge-in).
//
// Server usage follows the listener/accept pattern:
//
//	srv := mediastream.NewServer(mediastream.ServerConfig{})
//	http.Handle("/media", srv)
//	for {
//	    conn, err := srv.Accept(ctx)
//	    if err != nil {
//	        break
//	    }
//	    go handleCall(conn)
//	}
//
// The adapter never blocks on a slow consumer: inbound audio is queued up to
// a bounded limit and the oldest frames are dropped, with a counter, when the
// session cannot keep up.
package mediastream
