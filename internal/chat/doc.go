// Package chat is the town chat synchronization core.
//
// A Controller acquires the single room for a scope through a Resolver, then
// runs a MessageStream and a ReactionAggregator against that room while an
// IdentityCache turns sender ids into display names. All persistence goes
// through the Store and Feed interfaces, so the same core runs against the
// board daemon over gRPC or against an in-process backend.
package chat
