// Package dashscope is a small client for the Aliyun DashScope endpoints the
// assistant streams from.
//
// Realtime speech runs over one WebSocket per operation:
//
//	client := dashscope.NewClient("sk-xxxxxxxx")
//	tts, err := client.Realtime.ConnectTTS(ctx, dashscope.TTSConfig{Voice: dashscope.VoiceSunny})
//	if err != nil {
//	    return err
//	}
//	defer tts.Close()
//	tts.AppendText("你好")
//	tts.Finish()
//	for ev, err := range tts.Events() {
//	    // response.audio.delta events carry PCM in ev.Audio
//	}
//
// Recognition is symmetrical: ConnectASR, AppendAudio frames, Finish, and read
// transcription events.
//
// Application completions stream as server-sent events:
//
//	body, err := client.Apps.Completion(ctx, appID, &dashscope.AppRequest{Prompt: "hi"})
//
// The body is returned unread so the caller can pace it.
package dashscope
