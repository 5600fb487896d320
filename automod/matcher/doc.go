// Pure matching helpers: domain rules, and threshold checks over a set of classified items.
//
// Nothing in this package does I/O or holds state.
package matcher
