// Package hclflow reads and writes flows in an HCL authoring format, an
// alternative to the JSON snapshot that is pleasant to keep in version
// control:
//
//	node "sendEmail" "welcome" {
//	  label   = "Welcome"
//	  subject = "Hi"
//	  body    = "Thanks for joining"
//	  next    = "pause"
//
//	  link {
//	    text = "Get started"
//	    url  = "https://example.com/start"
//	  }
//	}
//
//	node "condition" "opened" {
//	  condition_type = "opened"
//	  yes            = "done"
//	  no             = "pause"
//	}
//
// Edges are written as next/yes/no attributes on their source node. Edges
// carrying cosmetic state such as a style or a custom id are written as
// separate edge blocks instead. A flow may be split across several files;
// all of them are merged before the graph is built, so nodes can reference
// nodes declared elsewhere.
package hclflow
