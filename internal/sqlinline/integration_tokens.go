package sqlinline

const QSelectIntegrationToken = `--sql 5f6216a6-a85a-41bf-acc7-1f6804121082
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 0eb14a59-f2d2-4d4c-870d-7785f31c04ef
insert into integration_tokens (provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
