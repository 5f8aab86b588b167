package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/cascade-go/internal/graph"
)

const ownerListSource = `import React, { useEffect, useState } from 'react';
import axios from 'axios';
import { OwnerCard } from './OwnerCard';

export function OwnerList() {
  const [owners, setOwners] = useState([]);
  useEffect(() => {
    fetch('/owners')
      .then(res => res.json())
      .then(setOwners);
  }, []);
  return <div>{owners.map(o => <OwnerCard key={o.id} owner={o} />)}</div>;
}

export const OwnerEditor = ({ ownerId }: { ownerId: string }) => {
  const save = async (owner: Owner) => {
    await axios.post(` + "`/owners/${ownerId}`" + `, owner);
  };
  return <form onSubmit={save} />;
};
`

func TestTypeScriptAdapter_Parse(t *testing.T) {
	t.Parallel()

	adapter := NewTypeScriptAdapter()

	t.Run("Components", func(t *testing.T) {
		result, err := adapter.ParseFile("web/OwnerList.tsx", []byte(ownerListSource))
		require.NoError(t, err)

		list := findEntity(t, result, "OwnerList")
		assert.Equal(t, graph.KindComponent, list.Kind)
		assert.Equal(t, graph.LayerUI, list.Layer)

		editor := findEntity(t, result, "OwnerEditor")
		assert.Equal(t, graph.KindComponent, editor.Kind)
		assert.Greater(t, editor.StartLine, list.StartLine)
	})

	t.Run("FetchInvocation", func(t *testing.T) {
		result, err := adapter.ParseFile("web/OwnerList.tsx", []byte(ownerListSource))
		require.NoError(t, err)

		assert.True(t, hasRelation(result, "OwnerList", "GET /owners", graph.RelInvokesEndpoint))
	})

	t.Run("AxiosTemplateInvocation", func(t *testing.T) {
		result, err := adapter.ParseFile("web/OwnerList.tsx", []byte(ownerListSource))
		require.NoError(t, err)

		assert.True(t, hasRelation(result, "OwnerEditor", "POST /owners/{ownerId}", graph.RelInvokesEndpoint))
	})

	t.Run("ComponentImports", func(t *testing.T) {
		result, err := adapter.ParseFile("web/OwnerList.tsx", []byte(ownerListSource))
		require.NoError(t, err)

		assert.True(t, hasRelation(result, "OwnerList", "OwnerCard", graph.RelImports))
		assert.True(t, hasRelation(result, "OwnerEditor", "OwnerCard", graph.RelImports))
		// Library imports never produce relations.
		for _, r := range result.Relations {
			assert.NotEqual(t, "React", r.To)
			assert.NotEqual(t, "axios", r.To)
		}
	})

	t.Run("FetchWithMethodOption", func(t *testing.T) {
		src := []byte(`export function PetForm() {
  const submit = () => fetch('/pets', { method: 'POST', body: data });
  return <form onSubmit={submit} />;
}
`)
		result, err := adapter.ParseFile("web/PetForm.tsx", src)
		require.NoError(t, err)

		assert.True(t, hasRelation(result, "PetForm", "POST /pets", graph.RelInvokesEndpoint))
	})

	t.Run("AbsoluteURLKeepsPathOnly", func(t *testing.T) {
		src := []byte(`export function VetList() {
  fetch('http://api.acme.com/vets?sort=asc');
  return null;
}
`)
		result, err := adapter.ParseFile("web/VetList.tsx", src)
		require.NoError(t, err)

		assert.True(t, hasRelation(result, "VetList", "GET /vets", graph.RelInvokesEndpoint))
	})

	t.Run("MapGetIsNotAnEndpoint", func(t *testing.T) {
		src := []byte(`export function Cache() {
  const m = new Map();
  m.get("key");
  return null;
}
`)
		result, err := adapter.ParseFile("web/Cache.tsx", src)
		require.NoError(t, err)
		assert.Empty(t, result.Relations)
	})

	t.Run("CallOutsideComponentSkipped", func(t *testing.T) {
		src := []byte(`fetch('/startup');

export function App() {
  return null;
}
`)
		result, err := adapter.ParseFile("web/App.tsx", src)
		require.NoError(t, err)
		assert.Empty(t, result.Relations)
	})

	t.Run("ClassComponent", func(t *testing.T) {
		src := []byte(`export default class Dashboard extends React.Component {
  render() {
    return null;
  }
}
`)
		result, err := adapter.ParseFile("web/Dashboard.jsx", src)
		require.NoError(t, err)
		findEntity(t, result, "Dashboard")
	})
}

func TestTypeScriptAdapter_SupportsFile(t *testing.T) {
	t.Parallel()

	adapter := NewTypeScriptAdapter()
	assert.True(t, adapter.SupportsFile("web/App.tsx"))
	assert.True(t, adapter.SupportsFile("web/util.ts"))
	assert.True(t, adapter.SupportsFile("web/legacy.jsx"))
	assert.True(t, adapter.SupportsFile("web/index.js"))
	assert.False(t, adapter.SupportsFile("src/Owner.java"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	t.Run("DispatchByExtension", func(t *testing.T) {
		assert.Equal(t, "java", registry.ForFile("src/Owner.java").Language())
		assert.Equal(t, "typescript", registry.ForFile("web/App.tsx").Language())
	})

	t.Run("UnsupportedFile", func(t *testing.T) {
		assert.Nil(t, registry.ForFile("pom.xml"))
		assert.Nil(t, registry.ForFile("README.md"))
	})

	t.Run("Languages", func(t *testing.T) {
		assert.Equal(t, []string{"java", "typescript"}, registry.Languages())
	})
}

func TestStubEntity(t *testing.T) {
	t.Parallel()

	stub := StubEntity("src/Broken.java")
	assert.Equal(t, "src/Broken.java", stub.ID)
	assert.Equal(t, graph.KindUnparsed, stub.Kind)
	assert.Equal(t, graph.LayerBackend, stub.Layer)
	assert.Equal(t, "Broken.java", stub.Name)

	uiStub := StubEntity("web/Broken.tsx")
	assert.Equal(t, graph.LayerUI, uiStub.Layer)
}
