// Package logging provides structured logging for projindex.
//
// Logger wraps zap with context-aware methods. A sync run stores its run id
// in the context with WithRunID and every entry logged with that context
// carries it as run.id.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = logger.Sync() }()
//
//	ctx = logging.WithRunID(ctx, logging.NewRunID())
//	logger.Info(ctx, "projects fetched", zap.Int("count", n))
//
// Credentials are masked before encoding: fields named api_key,
// authorization and similar are replaced outright, and Linear keys or
// bearer tokens are cut out of messages, strings and errors. Entries below
// Info are sampled; the rename audit trail at Info and above never is.
//
// Tests use NewTestLogger, which records entries after redaction.
package logging
