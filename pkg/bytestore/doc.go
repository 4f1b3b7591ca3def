// Package bytestore is the archive behind the capture pipeline: a larger,
// slower byte-addressed store that stopped windows are copied into.
//
// A [Store] drives a [Port] in bounded chunks. Each chunk is retried up to
// Config.MaxRetriesPerChunk times with a jittered backoff in between. A
// failed operation counts towards Config.DegradeThreshold; once reached the
// store goes DEGRADED and refuses work until [Store.Recover] re-initializes
// the port. A successful operation clears the count.
//
// The store also refuses work when the port's timing epoch no longer matches
// the one seen at init. [Status].NotReadyReason tells the two cases apart.
//
// [MemPort] backs tests; [FilePort] keeps the image in a regular file.
package bytestore
