// Package dropmon watches the drop directory for build trees and feeds the
// job registry. A tree is identified by a fingerprint of its plan identity
// and artifact stat signatures, so unchanged trees are never enqueued twice.
package dropmon
