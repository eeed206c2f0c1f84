// ABOUTME: Live speech protocol package
// ABOUTME: Defines protocol messages and WebSocket client
// Package protocol implements the bidirectional live speech protocol.
//
// Provides message types and a WebSocket client that streams realtime
// audio input and routes server content onto channels.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{Endpoint: url, APIKey: key})
//	err := client.Connect(ctx)
//	err = client.SendAudio(payload)
package protocol
