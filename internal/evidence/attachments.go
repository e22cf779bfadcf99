package evidence

import (
	"fmt"
	"path"
	"strings"

	"github.com/a3tai/pdf-evidence/internal/pdf/security"
)

// attachmentResult is the outcome of the attachment step.
type attachmentResult struct {
	Files     []ExtractedFile
	Failures  []*ItemFailure
	Supported bool
}

// extractAttachments persists every embedded payload of doc under
// embedded_files/. Payloads sharing a file name are written side by side
// with a numeric suffix. Documents that do not implement AttachmentSource
// produce an empty result.
func extractAttachments(doc Document, folder caseFolder) attachmentResult {
	src, ok := doc.(AttachmentSource)
	if !ok {
		return attachmentResult{}
	}
	res := attachmentResult{Supported: true}

	refs, err := src.Attachments()
	if err != nil {
		res.Failures = append(res.Failures, &ItemFailure{Stage: StageAttachments, Err: fmt.Errorf("enumeration failed: %w", err)})
		return res
	}
	if len(refs) == 0 {
		return res
	}

	validator, err := security.NewPathValidator(folder.root)
	if err != nil {
		res.Failures = append(res.Failures, &ItemFailure{Stage: StageAttachments, Err: err})
		return res
	}

	used := map[string]bool{}
	for _, ref := range refs {
		file, err := extractAttachment(src, validator, folder, ref, used)
		if err != nil {
			res.Failures = append(res.Failures, &ItemFailure{Stage: StageAttachments, Name: ref.Name(), Err: err})
			continue
		}
		res.Files = append(res.Files, file)
	}
	return res
}

func extractAttachment(src AttachmentSource, validator *security.PathValidator, folder caseFolder, ref AttachmentRef, used map[string]bool) (file ExtractedFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attachment panic: %v", r)
		}
	}()

	data, err := src.Attachment(ref.ID)
	if err != nil {
		return ExtractedFile{}, err
	}
	rel, err := validator.Join(attachmentsDir, ref.Name())
	if err != nil {
		return ExtractedFile{}, err
	}
	rel = uniquePath(rel, used)
	return folder.writeRecord(rel, KindAttachment, data)
}

// uniquePath returns rel, or rel with _2, _3, ... before its extension when
// rel is already taken, and marks the result as taken.
func uniquePath(rel string, used map[string]bool) string {
	candidate := rel
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	used[candidate] = true
	return candidate
}
