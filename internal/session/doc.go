// Package session records monitoring session history in a JSON file.
package session
