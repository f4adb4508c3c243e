package ports

// SignatureVerifier verifies the XML signature on federation metadata.
//
// The interface returns validated bytes (not just an error) so callers only
// ever parse what was actually covered by the signature.
type SignatureVerifier interface {
	// Verify validates the enveloped signature and returns the validated XML.
	Verify(data []byte) ([]byte, error)
}

// MetadataSigner signs XML documents. Used to produce signed fixtures.
type MetadataSigner interface {
	// Sign adds an enveloped XML signature and returns the signed bytes.
	Sign(data []byte) ([]byte, error)
}
