// Package output renders command results as text or JSON.
//
// Results that implement Texter control their text form; anything else is
// printed with %v.
package output
