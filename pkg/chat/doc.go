// Package chat is the text producer: it opens a streaming chat response,
// splits it into data lines and feeds them to a stream.Engine session.
//
//	sender := chat.NewSender(engine, backend)
//	id, err := sender.Send(ctx, chat.Request{Message: "你好"}, renderer)
//	...
//	err = sender.Wait(ctx, id)
//
// Backends differ only in how the byte stream is obtained: HTTPBackend talks
// to the assistant's own textChat endpoint, AppBackend to a DashScope
// application, OpenAIBackend to any OpenAI-compatible chat completion API.
package chat
