package sqlinline

const QSelectIntegrationToken = `--sql 34a1599d-4885-4e51-9f6f-cd07feb10b81
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql fb72464d-e806-4ed4-93ca-d3a45f08292c
insert into integration_tokens(id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
  token = excluded.token,
  properties = excluded.properties,
  updated_at = now();
`
