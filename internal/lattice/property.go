package lattice

// Direction describes how a predictive property propagates through the
// solution space. UP properties implicitly hold for all ancestors of a tagged
// node, DOWN properties for all descendants, NONE only for the node itself.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// Property identifies a predictive property of a transformation.
type Property int

const (
	PropertyChecked Property = iota
	PropertyVisited
	PropertyExpanded
	PropertyKAnonymous
	PropertyNotKAnonymous
	PropertyAnonymous
	PropertyNotAnonymous
	PropertyInsufficientUtility
	PropertySuccessorsPruned
	PropertyForceSnapshot

	numProperties
)

var propertyNames = [numProperties]string{
	"checked",
	"visited",
	"expanded",
	"k-anonymous",
	"not-k-anonymous",
	"anonymous",
	"not-anonymous",
	"insufficient-utility",
	"successors-pruned",
	"force-snapshot",
}

func (p Property) String() string {
	if p < 0 || p >= numProperties {
		return "unknown"
	}
	return propertyNames[p]
}
