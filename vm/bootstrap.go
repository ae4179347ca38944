package vm

// The builtin types. TypeType and ObjectType are allocated before any
// type is created because every type refers to both.
var (
	TypeType   = &Type{}
	ObjectType = &Type{}

	IntType                *Type
	BoolType               *Type
	FloatType              *Type
	StrType                *Type
	NoneTypeType           *Type
	NotImplementedTypeType *Type
	TupleType              *Type
	ListType               *Type
	DictType               *Type
	FunctionType           *Type
	MethodType             *Type
	BuiltinFunctionType    *Type
	CellType               *Type
	CodeType               *Type
	PropertyType           *Type
)

func init() {
	bootstrapTypes()
}

func bootstrapTypes() {
	typeLock.Lock()
	spec := objectSpec()
	spec.noBase = true
	if _, err := newTypeLocked(spec, ObjectType); err != nil {
		panic(err)
	}
	if _, err := newTypeLocked(typeSpec(), TypeType); err != nil {
		panic(err)
	}
	typeLock.Unlock()

	NoneTypeType = MustNewType(noneSpec())
	NotImplementedTypeType = MustNewType(notImplementedSpec())
	IntType = MustNewType(intSpec())
	BoolType = MustNewType(boolSpec())
	FloatType = MustNewType(floatSpec())
	StrType = MustNewType(strSpec())
	TupleType = MustNewType(tupleSpec())
	ListType = MustNewType(listSpec())
	DictType = MustNewType(dictSpec())
	for _, s := range iteratorSpecs() {
		MustNewType(s)
	}

	BuiltinFunctionType = MustNewType(builtinFunctionSpec())
	MethodType = MustNewType(boundMethodSpec())
	MustNewType(methodDescrSpec())
	MustNewType(wrapperDescrSpec())
	MustNewType(methodWrapperSpec())
	MustNewType(getSetDescrSpec())
	MustNewType(memberDescrSpec())
	PropertyType = MustNewType(propertySpec())

	FunctionType = MustNewType(funcSpec())
	CellType = MustNewType(cellSpec())
	CodeType = MustNewType(codeSpec())
	typesLog.Debugf("bootstrapped builtin types")
}
