/*
In-memory storage for the sign-in demo: OAuth handshake state with lazy TTL eviction, OAuth session records, and cached user profiles.

None of this is durable. It is only appropriate for demos and local development: every user is signed out when the process restarts.
*/
package store
