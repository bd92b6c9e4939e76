// Package pagination provides limit/offset and page paging plus sorting for
// list-style CLI output such as `varbatch jobs list`.
package pagination
