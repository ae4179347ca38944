package vm

// slotFromDefinition adapts an attribute found in a type namespace (a
// function defined in a class body, a callable object, a descriptor) to
// the handle type of slot s. The handle calls the definition as a method.
func slotFromDefinition(s Slot, def Value) any {
	name := s.MethodName()
	switch s.Signature() {
	case SigUnary:
		return UnaryFunc(func(self Value) (Value, error) {
			return callDefinition(def, self, nil, nil)
		})
	case SigBinary:
		return BinaryFunc(func(self, other Value) (Value, error) {
			return callDefinition(def, self, []Value{other}, nil)
		})
	case SigPredicate:
		return PredicateFunc(func(self Value) (bool, error) {
			r, err := callDefinition(def, self, nil, nil)
			if err != nil {
				return false, err
			}
			b, ok := asGoBool(r)
			if !ok {
				return false, typeErrorf("__bool__ should return bool, returned %.200s", TypeOf(r).name)
			}
			return b, nil
		})
	case SigLen:
		return LenFunc(func(self Value) (int, error) {
			r, err := callDefinition(def, self, nil, nil)
			if err != nil {
				return 0, err
			}
			n, err := AsSize(r)
			if err != nil {
				return 0, err
			}
			if n < 0 {
				return 0, NewException(ValueError, "__len__() should return >= 0")
			}
			return n, nil
		})
	case SigHash:
		return HashFunc(func(self Value) (int, error) {
			r, err := callDefinition(def, self, nil, nil)
			if err != nil {
				return 0, err
			}
			if !isIntLike(r) {
				return 0, typeErrorf("__hash__ method should return an integer")
			}
			return intHash(r), nil
		})
	case SigContains:
		return ContainsFunc(func(self, item Value) (bool, error) {
			r, err := callDefinition(def, self, []Value{item}, nil)
			if err != nil {
				return false, err
			}
			return IsTrue(r)
		})
	case SigGetAttr:
		return GetAttrFunc(func(self Value, attr string) (Value, error) {
			return callDefinition(def, self, []Value{attr}, nil)
		})
	case SigSetAttr:
		return SetAttrFunc(func(self Value, attr string, v Value) error {
			_, err := callDefinition(def, self, []Value{attr, v}, nil)
			return err
		})
	case SigDelAttr:
		return DelAttrFunc(func(self Value, attr string) error {
			_, err := callDefinition(def, self, []Value{attr}, nil)
			return err
		})
	case SigSetItem:
		return SetItemFunc(func(self, key, v Value) error {
			_, err := callDefinition(def, self, []Value{key, v}, nil)
			return err
		})
	case SigDelItem:
		return DelItemFunc(func(self, key Value) error {
			_, err := callDefinition(def, self, []Value{key}, nil)
			return err
		})
	case SigCall:
		return CallFunc(func(self Value, args []Value, kwnames []string) (Value, error) {
			return callDefinition(def, self, args, kwnames)
		})
	case SigInit:
		return InitFunc(func(self Value, args []Value, kwnames []string) error {
			r, err := callDefinition(def, self, args, kwnames)
			if err != nil {
				return err
			}
			if !IsNone(r) {
				return typeErrorf("%s() should return None, not '%.200s'", name, TypeOf(r).name)
			}
			return nil
		})
	case SigDescrGet:
		return DescrGetFunc(func(self, obj Value, typ *Type) (Value, error) {
			var t Value = None
			if typ != nil {
				t = typ
			}
			return callDefinition(def, self, []Value{orNone(obj), t}, nil)
		})
	case SigDescrSet:
		return DescrSetFunc(func(self, obj, v Value) error {
			_, err := callDefinition(def, self, []Value{obj, v}, nil)
			return err
		})
	case SigDescrDelete:
		return DescrDeleteFunc(func(self, obj Value) error {
			_, err := callDefinition(def, self, []Value{obj}, nil)
			return err
		})
	}
	return nil
}

// callDefinition invokes def as a method of self. Method descriptors are
// called with self as first argument without creating a bound object;
// other descriptors are bound through __get__; anything else is called
// as found.
func callDefinition(def, self Value, args []Value, kwnames []string) (Value, error) {
	switch d := def.(type) {
	case *Function:
		return d.callSelf(self, args, kwnames, nil)
	case *MethodDescr:
		return d.callSelf(self, args, kwnames)
	}
	ops := OpsOf(def)
	if ops.typ.flags&MethodDescriptor != 0 {
		return Call(def, prepend(self, args), kwnames)
	}
	if ops.IsDescr() {
		bound, err := ops.DescrGet()(def, self, TypeOf(self))
		if err != nil {
			return nil, err
		}
		return Call(bound, args, kwnames)
	}
	return Call(def, args, kwnames)
}

func prepend(self Value, args []Value) []Value {
	all := make([]Value, len(args)+1)
	all[0] = self
	copy(all[1:], args)
	return all
}
