// Package llm provides the speech-to-text and extraction collaborators that turn
// dictated deposit notes into candidate drug movements. Both are backed by the
// OpenAI API, or any compatible server reachable through Config.BaseURL, with
// retry logic and client-side rate limiting.
package llm
