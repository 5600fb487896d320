// Interface to the content platform the app moderates on behalf of one community.
//
// Posts and comments share a single Item type, discriminated by Kind. Includes an in-memory
// MockClient for tests; the gateway sub-package talks to a real platform over HTTP.
package platform
