// Package deferred provides a single eventual result that composes.
//
// A Deferred is cold: nothing runs until Await is called, and every Await
// re-executes the underlying work. Use Memoize to share one execution.
// Succeed and Fail build values that are settled up front.
//
// # Operators
//
//   - Transform: map the success value; failures pass through
//   - Chain: sequential composition with another Deferred
//   - RecoverWithItem / RecoverWith: turn a failure into a success
//   - Invoke / InvokeOnFailure: side effects on either outcome
//   - CombineAll2 / CombineAll3 / All: wait for every component
//
// # Usage
//
//	user := deferred.From(func(ctx context.Context) (User, error) {
//	    return store.FindByName(ctx, "bob")
//	})
//	name := deferred.Transform(user, func(u User) string { return u.Name })
//	name = deferred.RecoverWithItem(name, "anonymous")
//	got, _ := name.Await(ctx)
//
// No operator imposes a timeout. A Deferred whose work never returns blocks
// its caller until the context passed to Await is canceled.
package deferred
