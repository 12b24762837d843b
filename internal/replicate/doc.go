// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package replicate provides the Replicate HTTP API client used for
// streaming text generation.
//
// A generation is a two-step exchange: a prediction is created against a
// model endpoint with "stream": true, and the returned stream URL is then
// read as Server-Sent Events. Each "output" event carries one text fragment;
// "done" ends the stream and "error" aborts it.
//
// # Key Types
//
//   - Client: API client with token, base URL, and optional rate limit
//   - Prediction: Prediction resource returned by the create call
//   - Stream: Lazy, single-use sequence of text fragments
//   - APIError: Non-sentinel HTTP error with problem details
//   - StreamError: Failure while reading a stream, with the partial text
//
// # Usage
//
//	client := replicate.NewClient(token)
//	stream, err := client.Stream(ctx, "meta/meta-llama-3-8b-instruct", input)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Fragment())
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// Nothing in this package retries. Failures surface to the caller once.
package replicate
