package descriptions

// Tool descriptions with practical examples and use cases

const (
	CollectEvidenceDescription = `Run a complete forensic evidence collection on one PDF document.

**When to use:** A PDF is suspected to be malicious or is part of an investigation and its contents must be preserved and triaged with a reproducible record.

**What it does:** Copies the document into a case folder (preserving its modification time), records MD5/SHA-1/SHA-256 of the copy, flags low-numbered objects containing JavaScript or embedded files and dumps them verbatim, extracts per-page text indicators (URLs, IPv4 addresses, e-mail addresses), link annotations and images (deduplicated by SHA-256, optionally OCR'd), pulls out embedded attachments, and writes a narrative report plus a JSON manifest.

**Examples:**
• Phishing triage: "Collect evidence from invoice-4471.pdf into /cases/0142"
• Quick look at scripts only: "Collect evidence from dropper.pdf with max_xref 500 and no OCR"

**Outputs:** The case folder path, the manifest and report paths, and the narrative report text.

**Best practices:** Use a fresh case folder per document. Encrypted documents are refused; the case folder then holds only the copy.`

	ExtractIOCsDescription = `Extract indicators of compromise from a block of text.

**When to use:** You already have text (an e-mail body, a page of a document, a log excerpt) and want the URLs, IPv4 addresses and e-mail addresses in it.

**What it does:** Returns three ordered, de-duplicated lists in first-seen order. IPv4 addresses are only reported when every octet is between 0 and 255.

**Examples:**
• "Extract IOCs from this message body"
• "List the URLs and addresses mentioned on page 3"`

	HashFileDescription = `Compute MD5, SHA-1 and SHA-256 digests of a file.

**When to use:** Verify an evidence copy against a manifest, or fingerprint a file before submitting it to a threat-intelligence lookup.

**Examples:**
• "Hash /cases/0142/invoice-4471.pdf and compare it with the manifest"
• "Get the SHA-256 of embedded_files/payload.exe"`
)

// Short parameter descriptions shared by the tools
const (
	ParamPath     = "Full path to the file"
	ParamOut      = "Case folder to create (default: the server's configured folder, else evidence_<unix time> in the working directory)"
	ParamMaxXref  = "Highest object number examined by triage (default 200)"
	ParamOCR      = "Run OCR on extracted images when the engine is available"
	ParamEmbedded = "Extract embedded file attachments"
	ParamText     = "Text to scan for indicators"
)
