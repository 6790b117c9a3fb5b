// Package snapshot turns raw live-context responses from the controller
// into entity records.
//
// Two stages run in order:
//
//	raw tools/call result
//	        |
//	        v
//	  +-----------+     +----------+
//	  |  Unwrap   | --> |  Parse   | --> []Entity
//	  +-----------+     +----------+
//
// Unwrap peels whatever envelope the controller wrapped the text in; the
// shape has been observed to vary between a plain JSON string, a content
// envelope, and JSON nested inside a string. Parse then decodes the text
// block format itself.
//
// Both stages are total: arbitrary input produces an empty result, never
// an error. A dashboard that renders nothing is recoverable; one that
// crashes on controller formatting drift is not.
package snapshot
