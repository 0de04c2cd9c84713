// Package memory provides in-process implementations of the session store
// and the cleanup log. State is lost on restart.
package memory
