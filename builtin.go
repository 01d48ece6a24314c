/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
)

const (
	ContainerBeanID    = "cdi.Container"
	EventBeanID        = "cdi.Event"
	ConversationBeanID = "cdi.Conversation"
)

/**
Built-in beans registered with every deployment
*/
func (t *container) builtinBeans() []*Bean {

	containerBean := NewBean(ContainerBeanID).
		Types(ContainerType).
		Kind(BuiltIn).
		Factory(func(ctx context.Context, cc *Creational) (interface{}, error) {
			return t, nil
		}).
		MustBuild()

	/**
	Event handle takes the qualifiers of the injection point
	*/
	eventBean := NewBean(EventBeanID).
		Types(TypeOf[*Event]()).
		Kind(BuiltIn).
		Factory(func(ctx context.Context, cc *Creational) (interface{}, error) {
			ev := &Event{c: t}
			if ip, ok := cc.Target(); ok {
				ev.qualifiers = append(Qualifiers(nil), ip.Qualifiers...)
			}
			return ev, nil
		}).
		MustBuild()
	eventBean.anyQualifier = true

	conversationBean := NewBean(ConversationBeanID).
		Types(TypeOf[*Conversation]()).
		Kind(BuiltIn).
		Factory(func(ctx context.Context, cc *Creational) (interface{}, error) {
			conv, ok := t.conversations.Current(ctx)
			if !ok {
				return nil, notActive(ConversationScoped, "no conversation in the context")
			}
			return conv, nil
		}).
		MustBuild()

	return []*Bean{containerBean, eventBean, conversationBean}
}

func (t *container) ensureBuiltins() {
	t.builtinsOnce.Do(func() {
		for _, b := range t.builtinBeans() {
			if err := t.registry.register(b); err != nil {
				t.optionErrs = append(t.optionErrs, err)
			}
		}
	})
}
