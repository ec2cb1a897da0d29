// Package stopcond implements stopping conditions for a propagation loop.
//
// A Tracker is fed one (epoch, value) sample per accepted integration step.
// Evaluate reports when the goal lies between the previous sample and the
// current one. Cyclic conditions (angles) are unwrapped around the goal
// before testing, and apsis conditions are gated on eccentricity and on the
// sign of R·V relative to the propagation direction.
//
// Time conditions resolve their stop epoch in closed form. All other
// conditions push samples into a ring buffer with AddToBuffer until the
// full window brackets the goal, then interpolate the epoch with StopEpoch.
//
//	hit, err := tr.Evaluate(epoch, value)
//	if err != nil {
//		return err
//	}
//	if hit {
//		full, err := tr.AddToBuffer(true)
//		if err != nil {
//			return err
//		}
//		// Until full, keep stepping: Observe each new sample and call
//		// AddToBuffer(false).
//		if full {
//			stop, err := tr.StopEpoch()
//			if err != nil {
//				return err
//			}
//			report(stop)
//			if err := tr.UpdateBuffer(); err != nil {
//				return err
//			}
//		}
//	}
package stopcond
