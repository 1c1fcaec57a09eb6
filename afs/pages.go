package afs

import (
	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/request"
)

// MaxPages is the largest number of pages a single descriptor set may
// address (spec §3).
const MaxPages = 32

// numPages returns the page count spec's format describes, without
// resolving any of them.
func (spec PageSpec) numPages() int {
	switch spec.Format {
	case ListOfPairs:
		return len(spec.Pairs)
	case ArrayOfPages:
		return int(spec.NumPages)
	case ListPlusTrailingPage:
		n := len(spec.MemIndexes)
		if spec.HasTrailingPage {
			n++
		}
		return n
	default:
		return 0
	}
}

// DecodePages resolves spec's page descriptors into the uniform
// []request.Page form a worker expects, addressing the page pool
// through resolver (spec §4.5's three wire formats).
func DecodePages(spec PageSpec, resolver PageResolver) ([]request.Page, error) {
	if n := spec.numPages(); n > MaxPages {
		return nil, errors.E(errors.InvalidParameters, "afs: too many pages in descriptor set")
	}
	switch spec.Format {
	case ListOfPairs:
		pages := make([]request.Page, 0, len(spec.Pairs))
		for _, pr := range spec.Pairs {
			buf, err := resolver.Resolve(pr.MemIndex)
			if err != nil {
				return nil, err
			}
			pages = append(pages, request.Page{Buf: buf, Size: len(buf), Offset: pr.FileOffset})
		}
		return pages, nil

	case ArrayOfPages:
		pages := make([]request.Page, 0, spec.NumPages)
		offset := spec.StartFileOffset
		for i := uint32(0); i < spec.NumPages; i++ {
			buf, err := resolver.Resolve(spec.BaseMemIndex + i)
			if err != nil {
				return nil, err
			}
			pages = append(pages, request.Page{Buf: buf, Size: len(buf), Offset: offset})
			offset += int64(len(buf))
		}
		return pages, nil

	case ListPlusTrailingPage:
		pages := make([]request.Page, 0, len(spec.MemIndexes)+1)
		offset := spec.FirstFileOffset
		for _, idx := range spec.MemIndexes {
			buf, err := resolver.Resolve(idx)
			if err != nil {
				return nil, err
			}
			pages = append(pages, request.Page{Buf: buf, Size: len(buf), Offset: offset})
			if spec.FileOffsetStep != 0 {
				offset += spec.FileOffsetStep
			} else {
				offset += int64(len(buf))
			}
		}
		if spec.HasTrailingPage {
			buf, err := resolver.Resolve(spec.TrailingMemIndex)
			if err != nil {
				return nil, err
			}
			pages = append(pages, request.Page{Buf: buf, Size: len(buf), Offset: spec.TrailingFileOffset})
		}
		return pages, nil

	default:
		return nil, errors.E(errors.InvalidParameters, "afs: unknown page descriptor format")
	}
}
