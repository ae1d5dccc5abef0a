package qpi

import "github.com/pkg/errors"

// Error categories.  Every specific error below reports membership in exactly one of these via errors.Is.
var (
	ErrDomain       = errors.New("domain error")
	ErrStructural   = errors.New("structural error")
	ErrPrecondition = errors.New("precondition error")
)

// Domain errors
var (
	ErrNonPositiveDenominator = domainErr("non-positive phase denominator")
	ErrEmptyLCM               = domainErr("lcm of empty denominator set")
	ErrBinCount               = domainErr("bin count is not a multiple of the required phase resolution")
	ErrBinMismatch            = domainErr("bin count incompatible with signature")
	ErrOverflow               = domainErr("phase arithmetic overflows int64")
	ErrFieldRange             = domainErr("field does not fit in u32")
	ErrBadEncoding            = domainErr("bad canonical graph encoding")
	ErrBadConfig              = domainErr("bad config value")
	ErrBadGraphExpr           = domainErr("malformed graph expression")
	ErrUnreducedPhase         = domainErr("phase is not in canonical form")
)

// Structural errors
var (
	ErrNilGraph          = structuralErr("nil graph")
	ErrSelfLoop          = structuralErr("self-loop edge")
	ErrDanglingEdge      = structuralErr("edge endpoint is not a graph node")
	ErrOrphanLabel       = structuralErr("label for nonexistent node")
	ErrMissingLabel      = structuralErr("node has no label")
	ErrNonCanonicalPhase = structuralErr("label phase is not canonical")
	ErrDuplicateNode     = structuralErr("duplicate node id")
	ErrBadKind           = structuralErr("label kind is not A or B")
)

// Precondition errors
var (
	ErrSiteSize       = preconditionErr("rewrite site has the wrong number of nodes")
	ErrSiteEdges      = preconditionErr("rewrite site edges do not join its nodes")
	ErrSiteNotInGraph = preconditionErr("rewrite site is not part of the graph")
)

type kindErr struct {
	msg      string
	category error
}

func (err *kindErr) Error() string {
	return err.msg
}

func (err *kindErr) Is(target error) bool {
	return target == err.category
}

func domainErr(msg string) error {
	return &kindErr{msg, ErrDomain}
}

func structuralErr(msg string) error {
	return &kindErr{msg, ErrStructural}
}

func preconditionErr(msg string) error {
	return &kindErr{msg, ErrPrecondition}
}

// Catalog errors
var (
	ErrNotFound        = errors.New("graph not found")
	ErrBadCatalogParam = errors.New("bad catalog param")
	ErrCatalogVersion  = errors.New("catalog version is incompatible")
)
