// Package transfer synchronizes files between two [FileSystem]s: the local
// disk and platform storage or a blob bucket.
//
// Single files are copied with [UploadFile] and [DownloadFile]; trees with
// [UploadDir] and [DownloadDir], which walk the source depth-first, create
// destination directories lazily and honour .apoloignore files and
// command-line filters. A [Policy] decides per file whether to skip,
// overwrite or resume; resumed transfers re-verify a trailing overlap
// window before appending. [Glob] expands wildcard patterns lazily against
// any FileSystem.
//
// Transfers are sequential and never retried here. A failure leaves the
// destination possibly truncated; re-running with Update or Continue picks
// up where the previous run stopped.
package transfer
