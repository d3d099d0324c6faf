// Package sse writes Server-Sent Events.
//
// Two shapes are supported. Stream pushes the items of a pipeline to a
// single request until the pipeline terminates or the client leaves:
//
//	err := sse.Stream(c.Writer, c.Request, svc.Recommendations())
//
// Hub fans published events out to every client subscribed to a topic,
// for events that originate outside the request such as bus greetings:
//
//	hub.Publish("greetings", sse.Event{Name: "greeting", Data: []byte(text)})
//	sse.ServeHub(hub, c.Writer, c.Request, "greetings")
//
// Both send a keep-alive comment while idle.
package sse
