// Package logx provides the bot's structured logger.
//
// It wraps zerolog behind a small Logger type whose sinks and level can be
// swapped at runtime through the Service (config hot reload). Components hold
// a Logger created via Service.Logger() or With(); those stay live across
// Apply() calls.
package logx
