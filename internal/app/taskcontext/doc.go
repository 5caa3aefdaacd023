// Package taskcontext holds at most one task context per execution unit.
//
// An execution unit is one request or work item in flight. Dispatch code
// starts a unit with WithUnit, then creates the unit's task context:
//
//	ctx = taskcontext.WithUnit(ctx)
//	z, err := svc.Create(ctx, domain.TaskTypeHTTP, func(b *domain.TaskContextBuilder) {
//	    b.Set(domain.KeyAppName, "orders").Set(domain.KeyModuleName, "orders-web")
//	})
//	if err != nil {
//	    return err
//	}
//	defer z.Zap()
//
// Anything running under ctx (or a context derived from it) can read the
// active context:
//
//	if tc := taskcontext.FromContext(ctx); tc != nil {
//	    bean := tc.Get(domain.KeyBeanName)
//	}
//
// # Lifecycle
//
// Each unit moves Empty -> Active on Create and Active -> Empty on Zap.
// Creating while Active fails with domain.ErrIllegalState and leaves the
// active context untouched. Run wraps the whole sequence and zaps on every
// exit path, panics included.
//
// WithUnit always starts a fresh unit. A unit never sees the task context of
// the unit it was started from.
package taskcontext
