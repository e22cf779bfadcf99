package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collector drives evidence runs. A Collector holds no per-run state, so one
// value may serve several concurrent runs.
type Collector struct {
	opener Opener
	opts   Options
	log    *slog.Logger
}

// NewCollector creates a collector that opens documents through opener.
func NewCollector(opener Opener, opts Options) *Collector {
	return &Collector{
		opener: opener,
		opts:   opts,
		log:    opts.logger(),
	}
}

// Run executes one evidence run for the document at source and returns the
// finalized manifest. Fatal errors are *StageError values wrapping one of the
// Err* sentinels; no manifest is produced for them.
func (c *Collector) Run(ctx context.Context, source string) (*Manifest, error) {
	r := &run{
		c:        c,
		source:   source,
		manifest: newManifest(),
		links:    newOrderedSet(),
		seen:     NewSeenHashes(),
		log:      c.log.With("source", source),
	}
	return r.execute(ctx)
}

// run is the state of a single evidence run.
type run struct {
	c        *Collector
	source   string
	folder   caseFolder
	manifest *Manifest
	links    *orderedSet
	seen     *SeenHashes
	stage    Stage
	log      *slog.Logger
}

func (r *run) execute(ctx context.Context) (*Manifest, error) {
	start := time.Now()
	r.enter(StageInit)
	r.manifest.RunID = uuid.NewString()
	r.manifest.Tool = r.c.toolInfo()
	r.log.Info("starting evidence run", "run_id", r.manifest.RunID)

	r.enter(StageCopySource)
	if err := r.copySource(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StageHash)
	hashes, err := HashFile(r.manifest.EvidencePath)
	if err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", ErrHashFailed, err))
	}
	r.manifest.Hashes = hashes

	r.enter(StageOpenDocument)
	doc, err := r.c.opener.Open(ctx, r.manifest.EvidencePath)
	if err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", ErrOpenFailed, err))
	}
	defer doc.Close()

	r.enter(StageCheckEncryption)
	if doc.RequiresPassword() {
		return nil, r.fail(ErrEncrypted)
	}
	r.describeDocument(doc)

	r.enter(StageTriage)
	r.triage(doc)

	r.enter(StagePageLoop)
	r.pageLoop(ctx, doc)

	r.enter(StageAttachments)
	r.attachments(doc)

	r.enter(StageFinalize)
	if err := r.finalize(); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", ErrFinalizeFailed, err))
	}

	r.enter(StageDone)
	r.log.Info("evidence run complete",
		"run_id", r.manifest.RunID,
		"case_folder", r.manifest.CaseFolder,
		"pages", r.manifest.PageCount,
		"images", r.manifest.Summary.TotalImages,
		"links", r.manifest.Summary.TotalLinks,
		"duration", time.Since(start).Round(time.Millisecond))
	return r.manifest, nil
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.log.Debug("entering stage", "stage", s.String())
}

func (r *run) fail(err error) error {
	failed := r.stage
	r.stage = StageFailed
	r.log.Error("evidence run failed", "stage", failed.String(), "err", err)
	return &StageError{Stage: failed, Path: r.source, Err: err}
}

// skip routes a recoverable failure to the log.
func (r *run) skip(f *ItemFailure) {
	r.log.Warn("item skipped", f.logAttrs()...)
}

func (r *run) copySource() error {
	info, err := os.Stat(r.source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrSourceNotFound
		}
		return fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: not a regular file", ErrSourceNotFound)
	}

	source, err := filepath.Abs(r.source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}
	root, err := r.claimCaseFolder()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}
	dst := filepath.Join(root, filepath.Base(source))
	if dst == source {
		return fmt.Errorf("%w: evidence copy would overwrite the source", ErrCopyFailed)
	}

	if err := copyFile(source, dst, info.ModTime()); err != nil {
		return fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	r.folder = caseFolder{root: root}
	r.manifest.CaseFolder = root
	r.manifest.SourcePath = source
	r.manifest.EvidencePath = dst
	r.manifest.FileSize = info.Size()
	r.manifest.CreatedTime = createdTime(info).UTC().Format(time.RFC3339)
	r.manifest.ModifiedTime = info.ModTime().UTC().Format(time.RFC3339)
	r.log.Debug("evidence copy written", "path", dst, "size", info.Size())
	return nil
}

// maxDefaultFolders bounds the suffixes tried for a default case folder.
const maxDefaultFolders = 1000

// claimCaseFolder creates the case folder and returns its absolute path. An
// explicit OutputDir must be absent or empty. The default evidence_<unix>
// name takes a _2, _3, ... suffix when a run in the same second already
// claimed it.
func (r *run) claimCaseFolder() (string, error) {
	if dir := r.c.opts.OutputDir; dir != "" {
		root, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", err
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			return "", err
		}
		if len(entries) > 0 {
			return "", fmt.Errorf("%w: %s", ErrCaseFolderInUse, root)
		}
		return root, nil
	}

	base := fmt.Sprintf("evidence_%d", r.c.opts.now().Unix())
	for n := 1; n <= maxDefaultFolders; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		root, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		err = os.Mkdir(root, 0o755)
		if err == nil {
			return root, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s through %s_%d", ErrCaseFolderInUse, base, base, maxDefaultFolders)
}

// copyFile duplicates src at dst and carries over the modification time.
func copyFile(src, dst string, modTime time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, modTime, modTime)
}

func (r *run) describeDocument(doc Document) {
	r.manifest.PageCount = doc.PageCount()
	r.manifest.PDFVersion = doc.Version()
	for k, v := range doc.Metadata() {
		r.manifest.Metadata[k] = v
	}
}

func (r *run) triage(doc Document) {
	res := Triage(doc, r.c.opts.MaxXref)
	for _, f := range res.Failures {
		r.skip(f)
	}

	r.manifest.Triage = res.Info
	r.manifest.Suspicious = res.Suspicious

	for _, obj := range res.Flagged {
		file, err := r.folder.writeRecord(objectDumpPath(obj.Index), KindObjectDump, []byte(obj.Raw))
		if err != nil {
			r.skip(&ItemFailure{Stage: StageTriage, Xref: obj.Index, Err: err})
			continue
		}
		r.manifest.ExtractedFiles = append(r.manifest.ExtractedFiles, file)
	}

	if res.Info.Bounded {
		r.log.Info("triage bounded", "max_xref", res.Info.MaxXref, "object_count", res.Info.ObjectCount)
	}
	r.log.Debug("triage complete",
		"javascript", len(res.Suspicious.JavaScript),
		"embeddedfile", len(res.Suspicious.EmbeddedFile))
}

func (r *run) pageLoop(ctx context.Context, doc Document) {
	images := &imageExtractor{
		doc:        doc,
		folder:     r.folder,
		seen:       r.seen,
		ocr:        r.c.opts.OCR,
		ocrTimeout: r.c.opts.OCRTimeout,
		log:        r.log,
	}

	total := r.manifest.PageCount
	for page := 1; page <= total; page++ {
		r.manifest.Pages = append(r.manifest.Pages, r.processPage(ctx, doc, images, page))
		if r.c.opts.Progress != nil {
			r.c.opts.Progress(page, total)
		}
	}
}

func (r *run) processPage(ctx context.Context, doc Document, images *imageExtractor, page int) PageRecord {
	text, err := guard(func() (string, error) { return doc.PageText(page) })
	if err != nil {
		r.skip(&ItemFailure{Stage: StagePageLoop, Page: page, Err: fmt.Errorf("text extraction: %w", err)})
		text = ""
	}

	iocs := ExtractIOCs(text)
	rec := PageRecord{
		PageNumber: page,
		URLs:       iocs.URLs,
		IPs:        iocs.IPs,
		Emails:     iocs.Emails,
		LineCount:  countLines(text),
		Text:       text,
	}
	for _, u := range iocs.URLs {
		r.links.Add(u)
	}

	annots, err := guard(func() ([]LinkRef, error) { return doc.PageLinks(page) })
	if err != nil {
		r.skip(&ItemFailure{Stage: StagePageLoop, Page: page, Err: fmt.Errorf("links: %w", err)})
	}
	for _, a := range annots {
		if a.URI != "" {
			r.links.Add(a.URI)
		}
	}
	rec.Annotations = annots

	refs, err := guard(func() ([]ImageRef, error) { return doc.PageImages(page) })
	if err != nil {
		r.skip(&ItemFailure{Stage: StagePageLoop, Page: page, Err: fmt.Errorf("images: %w", err)})
	}
	for _, ref := range refs {
		img, err := images.extract(ctx, page, ref)
		if err != nil {
			var f *ItemFailure
			if errors.As(err, &f) {
				r.skip(f)
			}
			continue
		}
		r.manifest.Images = append(r.manifest.Images, img)
	}

	return rec
}

func (r *run) attachments(doc Document) {
	if !r.c.opts.ExtractEmbedded {
		r.log.Debug("attachment extraction disabled")
		return
	}
	res := extractAttachments(doc, r.folder)
	if !res.Supported {
		r.log.Debug("provider does not expose attachments")
		return
	}
	for _, f := range res.Failures {
		r.skip(f)
	}
	r.manifest.ExtractedFiles = append(r.manifest.ExtractedFiles, res.Files...)
}

func (r *run) finalize() error {
	m := r.manifest
	m.Links = r.links.Items()
	m.summarize()

	stem := m.Stem()

	data, err := m.MarshalJSONReport()
	if err != nil {
		return err
	}
	if err := r.folder.write(ReportPath(stem, ".json"), data); err != nil {
		return err
	}

	if err := r.folder.write(ReportPath(stem, ".txt"), []byte(RenderNarrative(m))); err != nil {
		return err
	}

	if r.c.opts.Msgpack {
		packed, err := m.MarshalMsgpack()
		if err != nil {
			return err
		}
		if err := r.folder.write(ReportPath(stem, ".msgpack"), packed); err != nil {
			return err
		}
	}
	return nil
}

// ReportPath returns the case-relative path of a report for the given stem.
// ext is ".json", ".msgpack" or ".txt".
func ReportPath(stem, ext string) string {
	if ext == ".txt" {
		return fmt.Sprintf("%s/%s_report.txt", reportsDir, stem)
	}
	return fmt.Sprintf("%s/%s_manifest%s", reportsDir, stem, ext)
}

func (c *Collector) toolInfo() ToolInfo {
	info := ToolInfo{
		Name:      ToolName,
		Version:   c.opts.ToolVersion,
		GoVersion: runtime.Version(),
	}
	if p, ok := c.opener.(interface{ Providers() []string }); ok {
		info.Providers = p.Providers()
	}
	return info
}

// guard converts a provider panic into an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider panic: %v", rec)
		}
	}()
	return fn()
}

func countLines(text string) int {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
