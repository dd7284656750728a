package values

// ChannelClass is one of the three channel families a descriptor declares.
type ChannelClass string

const (
	ChannelTrigger ChannelClass = "trigger"
	ChannelAction  ChannelClass = "action"
	ChannelQuery   ChannelClass = "query"
)

// ChannelClasses lists every class in descriptor order.
var ChannelClasses = []ChannelClass{ChannelTrigger, ChannelAction, ChannelQuery}

// DescriptorKey returns the descriptor key holding channels of this class.
func (c ChannelClass) DescriptorKey() string {
	switch c {
	case ChannelTrigger:
		return "triggers"
	case ChannelAction:
		return "actions"
	default:
		return "queries"
	}
}
