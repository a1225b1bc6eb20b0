// Package protocol implements the wire protocol of the vkuchat network.
//
// Two layers live here:
//
//  1. The tag codec: every control message is a string of matched
//     ASCII tag pairs, e.g.
//
//     <SESSION_REQ><PEER_NAME>alice</PEER_NAME><PORT>4000</PORT></SESSION_REQ>
//
//     Encoding is plain concatenation; decoding validates the
//     whole-string grammar of a kind before extracting fields, so a
//     payload that merely contains another kind's markers never
//     decodes as that kind. Malformed or unknown input decodes to
//     "not this kind" instead of failing — unrecognized messages are
//     a forward-compatibility seam, not an error.
//
//  2. The frame layer: every unit crossing a connection is wrapped in
//     a length-prefixed frame with a one-byte kind discriminant.
//     Text frames carry tag-encoded control messages, binary frames
//     carry raw file chunks. The frame boundary is what keeps user
//     text containing '<' or '>' from ever splitting the envelope.
package protocol
