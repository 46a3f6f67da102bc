package ingenerr

// Status mirrors the wire-level response codes returned to clients for a
// failed Put/Delta/Connect/... request.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusNotFound
	StatusExists
	StatusParentNotFound
	StatusParentDiffers
	StatusTypeMismatch
	StatusBadURI
	StatusBadRequest
	StatusBadObjectType
	StatusBadValue
	StatusBadValueType
	StatusInvalidPoly
	StatusCompilationFailed
	StatusCreationFailed
	StatusNotDeletable
	StatusPrototypeNotFound
	StatusAllocationFailed
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusExists:
		return "EXISTS"
	case StatusParentNotFound:
		return "PARENT_NOT_FOUND"
	case StatusParentDiffers:
		return "PARENT_DIFFERS"
	case StatusTypeMismatch:
		return "TYPE_MISMATCH"
	case StatusBadURI:
		return "BAD_URI"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusBadObjectType:
		return "BAD_OBJECT_TYPE"
	case StatusBadValue:
		return "BAD_VALUE"
	case StatusBadValueType:
		return "BAD_VALUE_TYPE"
	case StatusInvalidPoly:
		return "INVALID_POLY"
	case StatusCompilationFailed:
		return "COMPILATION_FAILED"
	case StatusCreationFailed:
		return "CREATION_FAILED"
	case StatusNotDeletable:
		return "NOT_DELETABLE"
	case StatusPrototypeNotFound:
		return "PROTOTYPE_NOT_FOUND"
	case StatusAllocationFailed:
		return "ALLOCATION_FAILED"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "FAILURE"
	}
}

// categoryStatus maps each Category onto the Status the protocol layer
// reports back to a client, so a handler never hand-picks a code: it just
// builds an EnhancedError with the right Category and calls StatusOf.
var categoryStatus = map[Category]Status{
	CategoryNotFound:       StatusNotFound,
	CategoryConflict:       StatusExists,
	CategoryValidation:     StatusBadRequest,
	CategoryTypeMismatch:   StatusTypeMismatch,
	CategoryBadURI:         StatusBadURI,
	CategoryBadObject:      StatusBadObjectType,
	CategoryBadValue:       StatusBadValue,
	CategoryPoly:           StatusInvalidPoly,
	CategoryCompilation:    StatusCompilationFailed,
	CategoryCreation:       StatusCreationFailed,
	CategoryNotDeletable:   StatusNotDeletable,
	CategoryPrototype:      StatusPrototypeNotFound,
	CategoryAllocation:     StatusAllocationFailed,
	CategoryParentNotFound: StatusParentNotFound,
	CategoryParentDiffers:  StatusParentDiffers,
	CategoryInternal:       StatusInternalError,
	CategoryState:          StatusFailure,
	CategoryTimeout:        StatusFailure,
	CategoryGeneric:        StatusFailure,
}

// StatusOf derives the wire Status for err, walking through any wrapped
// EnhancedError. A plain error (no EnhancedError in its chain) maps to
// StatusInternalError, since it means a component failed to categorize it.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var ee *EnhancedError
	if !As(err, &ee) {
		return StatusInternalError
	}
	if st, ok := categoryStatus[ee.Category]; ok {
		return st
	}
	return StatusFailure
}
