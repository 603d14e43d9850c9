package extract

import "encoding/base64"

// idSeparator joins text and published label before encoding. Neither field
// is expected to contain it in a way that matters: the concatenation only
// has to be stable, not reversible.
const idSeparator = "|"

// DeriveID builds a stable identifier for a post that carries no explicit
// id, by base64-encoding the UTF-8 bytes of text and published label.
// Identical (text, published) pairs always produce the same id, which is
// what de-duplication rests on. Two distinct posts with identical text and
// identical published label collide; the label granularity is coarse
// ("2 hours ago"), so the worst case is mistaking a genuinely new post for
// an already-notified one.
func DeriveID(text, published string) string {
	return base64.StdEncoding.EncodeToString([]byte(text + idSeparator + published))
}
