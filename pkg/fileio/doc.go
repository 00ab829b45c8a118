// Package fileio is a client for the file.io file-sharing API.
//
// Every operation returns a *Result envelope carrying Success, Status and Key
// so callers can branch on Success without inspecting error types. A non-nil
// error is only returned for local problems: an unreadable upload source, an
// unwritable download destination or an invalid update Mode.
//
// Upload and Download can run without credentials through the package-level
// functions; the remaining operations need a Client built with an API key.
package fileio
