package vm

import "github.com/tliron/commonlog"

var (
	typesLog = commonlog.GetLogger("slotvm.types")
	evalLog  = commonlog.GetLogger("slotvm.eval")
)
